package config

const (
	EnvPrefix = "FOODDASH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	ChargeOnPlacement    = "placement"
	ChargeOnConfirmation = "confirmation"

	EnvAppEnv   = "FOODDASH_APP_ENV"
	EnvPort     = "FOODDASH_APP_PORT"
	EnvLogLevel = "FOODDASH_LOG_LEVEL"

	EnvDBDSN  = "FOODDASH_DB_DSN"
	EnvDBHost = "FOODDASH_DB_HOST"
	EnvDBUser = "FOODDASH_DB_USER"
	EnvDBName = "FOODDASH_DB_NAME"

	EnvRedisURL = "FOODDASH_REDIS_URL"

	EnvJWTSecret  = "FOODDASH_JWT_SECRET"
	EnvJWTIssuer  = "FOODDASH_JWT_ISSUER"
	EnvJWTExpMins = "FOODDASH_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "FOODDASH_USE_SQLITE"

	EnvWalletChargeOn = "FOODDASH_WALLET_CHARGE_ON"
	EnvWalletMinTopup = "FOODDASH_WALLET_MIN_TOPUP_MINOR"
	EnvWalletMaxTopup = "FOODDASH_WALLET_MAX_TOPUP_MINOR"

	EnvMidtransServerKey = "FOODDASH_MIDTRANS_SERVER_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
