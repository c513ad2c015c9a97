package agent

import (
	"strings"

	"sitelens/models"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

var tabletTokens = []string{"ipad", "tablet", "kindle", "silk", "playbook"}

var mobileTokens = []string{
	"mobile", "iphone", "ipod", "android", "blackberry",
	"windows phone", "opera mini", "iemobile",
}

// classifyDevice buckets a user-agent string into mobile, tablet or
// desktop using substring heuristics. Tablet tokens are checked first:
// Android tablets carry "Android" without "Mobile", so the android
// special case must run before the generic mobile match.
func classifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, tok := range tabletTokens {
		if strings.Contains(ua, tok) {
			return DeviceTablet
		}
	}
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobile") {
		return DeviceTablet
	}
	for _, tok := range mobileTokens {
		if strings.Contains(ua, tok) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

// snapshotDevice reads the device context off the page reader. Best
// effort: missing fields come back as zero values, never errors.
func snapshotDevice(page PageReader) models.DeviceInfo {
	ua := page.UserAgent()
	w, h := page.Viewport()
	return models.DeviceInfo{
		Type:      classifyDevice(ua),
		UserAgent: ua,
		Viewport:  models.Viewport{Width: w, Height: h},
	}
}
