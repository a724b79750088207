package util

// MaskCode hides all but the first four characters of a code for log output.
func MaskCode(code string) string {
	if len(code) <= 4 {
		return "****"
	}
	return code[:4] + "****"
}
