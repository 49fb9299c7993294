package task

// Stage names the pipeline step a failure or artifact belongs to.
type Stage string

const (
	StageProducing Stage = "producing"
	StageAuditing  Stage = "auditing"
)
