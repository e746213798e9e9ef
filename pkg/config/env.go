package config

// EnvPrefix is the envconfig prefix shared by every variable.
const EnvPrefix = "TABLESTARS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "TABLESTARS_APP_ENV"
	EnvPort                   = "TABLESTARS_APP_PORT"
	EnvLogLevel               = "TABLESTARS_LOG_LEVEL"
	EnvDBDSN                  = "TABLESTARS_DB_DSN"
	EnvDBHost                 = "TABLESTARS_DB_HOST"
	EnvDBUser                 = "TABLESTARS_DB_USER"
	EnvDBPassword             = "TABLESTARS_DB_PASSWORD"
	EnvDBName                 = "TABLESTARS_DB_NAME"
	EnvRedisURL               = "TABLESTARS_REDIS_URL"
	EnvJWTSecret              = "TABLESTARS_JWT_SECRET"
	EnvJWTIssuer              = "TABLESTARS_JWT_ISSUER"
	EnvJWTExpMins             = "TABLESTARS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TABLESTARS_REFRESH_TOKEN_TTL_MINUTES"
	EnvGeofenceRadiusMeters   = "TABLESTARS_GEOFENCE_RADIUS_METERS"
	EnvCronSchedule           = "TABLESTARS_CRON_SCHEDULE"
	EnvCORSAllowedOrigins     = "TABLESTARS_CORS_ALLOWED_ORIGINS"
	EnvNotificationsQueueSize = "TABLESTARS_NOTIFICATIONS_QUEUE_SIZE"
	EnvFCMEnabled             = "TABLESTARS_FCM_ENABLED"
	EnvStripeAPIKey           = "TABLESTARS_STRIPE_API_KEY"
	EnvStripeSecret           = "TABLESTARS_STRIPE_SECRET"
)

var dsnPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
