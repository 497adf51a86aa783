package core

type Environment string

const (
	DevelopmentEnv Environment = "development"
	ProductionEnv  Environment = "production"
)

func (e Environment) IsProduction() bool {
	return e == ProductionEnv
}

func (e Environment) IsDevelopment() bool {
	return e == DevelopmentEnv
}

// EnvironmentFromString falls back to development for unknown values so a
// daemon never starts with production log levels by accident.
func EnvironmentFromString(s string) Environment {
	if Environment(s) == ProductionEnv {
		return ProductionEnv
	}
	return DevelopmentEnv
}
