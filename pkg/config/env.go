package config

const (
	EnvPrefix = "STOCKYARD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOCKYARD_APP_ENV"
	EnvPort     = "STOCKYARD_APP_PORT"
	EnvDBDSN    = "STOCKYARD_DB_DSN"
	EnvDBHost   = "STOCKYARD_DB_HOST"
	EnvDBUser   = "STOCKYARD_DB_USER"
	EnvDBName   = "STOCKYARD_DB_NAME"
	EnvRedisURL = "STOCKYARD_REDIS_URL"

	EnvJWTSecret  = "STOCKYARD_JWT_SECRET"
	EnvJWTIssuer  = "STOCKYARD_JWT_ISSUER"
	EnvJWTExpMins = "STOCKYARD_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID       = "STOCKYARD_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "STOCKYARD_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubAnalyticsSub = "STOCKYARD_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvGatewayKeyID         = "STOCKYARD_GATEWAY_KEY_ID"
	EnvGatewayKeySecret     = "STOCKYARD_GATEWAY_KEY_SECRET"
	EnvGatewayWebhookSecret = "STOCKYARD_GATEWAY_WEBHOOK_SECRET"
	EnvGatewayMaxRetries    = "STOCKYARD_GATEWAY_MAX_RETRIES"
	EnvBookingFee           = "STOCKYARD_BOOKING_FEE_MINOR_UNITS"
	EnvBookingCurrency      = "STOCKYARD_BOOKING_CURRENCY"
)
