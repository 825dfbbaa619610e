package detection

import "time"

// Detection is one recognized object instance. Coordinates are normalized to [0,1].
type Detection struct {
	Class  string  `json:"class" bson:"class"`
	CX     float64 `json:"cx" bson:"cx"`
	CY     float64 `json:"cy" bson:"cy"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// PredictionSummary is the durable record of one inference run
type PredictionSummary struct {
	PredictionID     string      `json:"prediction_id" bson:"prediction_id"`
	OriginalImgPath  string      `json:"original_img_path" bson:"original_img_path"`
	PredictedImgPath string      `json:"predicted_img_path" bson:"predicted_img_path"`
	PredictedImgKey  string      `json:"predicted_img_key,omitempty" bson:"predicted_img_key,omitempty"`
	Labels           []Detection `json:"labels" bson:"labels"`
	Time             time.Time   `json:"time" bson:"time"`
}

// PredictResponse is the payload the bot decodes from the worker.
// Labels is a pointer so a missing field can be told apart from an empty list.
type PredictResponse struct {
	PredictionID     string       `json:"prediction_id"`
	OriginalImgPath  string       `json:"original_img_path"`
	PredictedImgPath string       `json:"predicted_img_path"`
	PredictedImgKey  string       `json:"predicted_img_key,omitempty"`
	Labels           *[]Detection `json:"labels,omitempty"`
	Time             time.Time    `json:"time"`
}

// PredictedKeyPrefix is prepended to the source key for annotated images
const PredictedKeyPrefix = "predicted/"

// PredictedKey returns the object-store key of the annotated image for key
func PredictedKey(key string) string {
	return PredictedKeyPrefix + key
}
