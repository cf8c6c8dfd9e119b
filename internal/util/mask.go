package util

// MaskName obscures a personal name for log output, keeping only the first
// rune: "山田太郎" becomes "山***".
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return "***"
	}
	return string(runes[0]) + "***"
}

// MaskLineUserID obscures a LINE user id for log output, showing only a
// short prefix.
func MaskLineUserID(lineUserID string) string {
	if len(lineUserID) > 6 {
		return lineUserID[:6] + "..."
	}
	if lineUserID == "" {
		return "***"
	}
	return lineUserID[:1] + "..."
}
