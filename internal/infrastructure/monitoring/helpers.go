package monitoring

// StatusLabel converts an error into a metric status label
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
