package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "TRADEBRIDGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TRADEBRIDGE_DB_DSN"
	EnvDBHost = "TRADEBRIDGE_DB_HOST"
	EnvDBUser = "TRADEBRIDGE_DB_USER"
	EnvDBName = "TRADEBRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
