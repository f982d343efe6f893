package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	// 服务对外可达的地址，本地存储用它拼接绝对读取 URL。
	// 留空时退回 http://127.0.0.1:<HTTP_PORT>，仅适合单机部署。
	ServerBaseURL string `env:"SERVER_BASE_URL" envDefault:""`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"tryon"`
	DBPath     string `env:"DBPath" envDefault:"datas/tryon.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/images"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`
	// 签名读取 URL 的有效期（秒），与结果缓存共用
	StorageSignedURLTTLSeconds int `env:"STORAGE_SIGNED_URL_TTL_SECONDS" envDefault:"7200"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// 进度通道：配置了 REDIS_URL 则使用 Redis，否则使用进程内存储
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// 生成任务工作协程数量
	WorkerCount   int `env:"WORKER_COUNT" envDefault:"4"`
	QueueCapacity int `env:"QUEUE_CAPACITY" envDefault:"256"`

	// 生成服务商配置
	GeminiAPIKey   string `env:"GEMINI_API_KEY" envDefault:""`
	GeminiEndpoint string `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com"`

	ViWearFluxEndpoint    string `env:"VIWEAR_FLUX_ENDPOINT" envDefault:""`
	ViWearCatVTONEndpoint string `env:"VIWEAR_CATVTON_ENDPOINT" envDefault:""`
	ViWearAPIToken        string `env:"VIWEAR_API_TOKEN" envDefault:""`

	FitroomAPIKey  string `env:"FITROOM_API_KEY" envDefault:""`
	FitroomBaseURL string `env:"FITROOM_BASE_URL" envDefault:"https://platform.fitroom.app"`

	// 上传分类（OpenAI Vision 兼容接口）
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com"`
	ClassifyModel string `env:"CLASSIFY_MODEL" envDefault:"gpt-4.1-mini"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"tryon-app"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`

	// 初始管理员账号（用户表为空时自动创建）
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:""`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:""`
}

func ParseConfig() (Config, error) {
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.Debugf("%#v\n", Conf)
	return Conf, nil
}
