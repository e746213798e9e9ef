package instance

import "os"

// GetID identifies the running process in logs. Heroku's DYNO wins over the explicit override.
func GetID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if id := os.Getenv("TABLESTARS_INSTANCE_ID"); id != "" {
		return id
	}
	return "local"
}
