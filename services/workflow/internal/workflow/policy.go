package workflow

// Policy holds the switches that decide the open behaviours of the approval
// pipeline.
type Policy struct {
	// EnforceStageOrder makes Advance(n) require gate n-1.
	EnforceStageOrder bool `mapstructure:"enforce_stage_order" yaml:"enforce_stage_order"`

	// RequireEndorsementsBeforeFinalApproval blocks Advance(3) of a project
	// plan while any required endorsement is missing.
	RequireEndorsementsBeforeFinalApproval bool `mapstructure:"require_endorsements" yaml:"require_endorsements"`

	BiometricianRequired bool `mapstructure:"biometrician_required" yaml:"biometrician_required"`

	// AuthorizeStages checks that the actor holds the seat for the stage.
	AuthorizeStages bool `mapstructure:"authorize_stages" yaml:"authorize_stages"`

	// DirectorateArea is the business area name whose members approve stage 3.
	DirectorateArea string `mapstructure:"directorate_area" yaml:"directorate_area"`
}

func DefaultPolicy() Policy {
	return Policy{
		EnforceStageOrder:                      true,
		RequireEndorsementsBeforeFinalApproval: false,
		BiometricianRequired:                   true,
		AuthorizeStages:                        true,
		DirectorateArea:                        "Directorate",
	}
}
