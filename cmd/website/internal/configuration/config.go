package configuration

import "github.com/adampresley/configinator"

type Config struct {
	AwsEndpointUrl         string `flag:"awsep" env:"AWS_ENDPOINT_URL" default:"http://localhost:4566" description:"AWS endpoint URL"`
	AwsRegion              string `flag:"awsregion" env:"AWS_REGION" default:"sa-east-1" description:"AWS region"`
	AwsAccessKeyId         string `flag:"awsaccesskeyid" env:"AWS_ACCESS_KEY_ID" default:"" description:"AWS access key ID"`
	AwsSecretAccessKey     string `flag:"awssecretaccesskey" env:"AWS_SECRET_ACCESS_KEY" default:"" description:"AWS secret access key"`
	AwsBucket              string `flag:"awsbucket" env:"AWS_BUCKET" default:"fotofacil" description:"S3 bucket"`
	AlbumsPhotoFolder      string `flag:"apf" env:"ALBUMS_PHOTO_FOLDER" default:"albums" description:"S3 folder for album photos"`
	BaseURL                string `flag:"baseurl" env:"BASE_URL" default:"http://localhost:8080" description:"Public base URL used in emailed links"`
	CookieSecret           string `flag:"cookiesecret" env:"COOKIE_SECRET" default:"password" description:"Secret for encoding cookies"`
	DownloadExpirationDays int    `flag:"dle" env:"DOWNLOAD_EXPIRATION_DAYS" default:"7" description:"Number of days before zip downloads expire"`
	DSN                    string `flag:"dsn" env:"DSN" default:"file:./data/fotofacil.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)" description:"Data source name"`
	EmailApiKey            string `flag:"emailapikey" env:"EMAIL_API_KEY" default:"" description:"API key for sending emails"`
	ExpirationSweepMinutes int    `flag:"esm" env:"EXPIRATION_SWEEP_MINUTES" default:"10" description:"Minutes between album expiration sweeps"`
	FromEmail              string `flag:"fromemail" env:"FROM_EMAIL" default:"nao-responda@fotofacil.com.br" description:"Sender address for emails"`
	FromName               string `flag:"fromname" env:"FROM_NAME" default:"FotoFácil" description:"Sender name for emails"`
	Host                   string `flag:"host" env:"HOST" default:"localhost:8080" description:"The address and port to bind the HTTP server to"`
	LogLevel               string `flag:"loglevel" env:"LOG_LEVEL" default:"debug" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'"`
	MaxThumbnailWorkers    int    `flag:"mtw" env:"MAX_THUMBNAIL_WORKERS" default:"8" description:"Maximum number of concurrent thumbnail workers"`
	MaxUploadMB            int    `flag:"maxupload" env:"MAX_UPLOAD_MB" default:"64" description:"Maximum size of a photo upload request in megabytes"`
	SupportEmail           string `flag:"supportemail" env:"SUPPORT_EMAIL" default:"suporte@fotofacil.com.br" description:"Inbox receiving support requests"`
	TaggingApiKey          string `flag:"taggingapikey" env:"TAGGING_API_KEY" default:"" description:"API key for the image tagging endpoint"`
	TaggingEndpoint        string `flag:"taggingendpoint" env:"TAGGING_ENDPOINT" default:"" description:"URL of the image tagging endpoint"`
}

func LoadConfig() Config {
	config := Config{}
	configinator.Behold(&config)
	return config
}
