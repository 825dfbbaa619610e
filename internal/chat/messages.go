package chat

// Replies sent to the user
const (
	MsgSendPhoto            = "Please send a photo."
	MsgCredentialsMissing   = "Error: object store credentials not found."
	MsgUploadFailed         = "Error uploading image to the object store: %v"
	MsgUploaded             = "Image successfully uploaded. Detecting objects..."
	MsgDownloadFailed       = "Error downloading your photo: %v"
	MsgServiceUnreachable   = "Error communicating with the detection service: %v"
	MsgServiceStatus        = "Error: detection service returned status code %d"
	MsgNothingDetected      = "No objects were detected in your photo."
	MsgAnnotatedUnavailable = "Could not retrieve the annotated image."
)
