// Package device classifies a request's User-Agent into mobile, tablet or desktop.
package device

import (
	"strings"

	"shortlinks/internal/domain"

	"github.com/mssola/useragent"
)

// Tablets are checked first: most tablet user agents also look mobile.
var (
	tabletMarkers = []string{"ipad", "tablet", "kindle", "silk/", "playbook", "nexus 7", "nexus 9", "sm-t"}
	mobileMarkers = []string{"mobi", "iphone", "ipod", "android", "windows phone", "blackberry", "opera mini"}
)

// Classifier maps a User-Agent header to a device class
type Classifier struct{}

// NewClassifier returns a Classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the device class of ua. Empty or unknown agents are desktop.
func (c *Classifier) Classify(ua string) domain.Device {
	return Classify(ua)
}

// Classify returns the device class of ua. Empty or unknown agents are desktop.
func Classify(ua string) domain.Device {
	if strings.TrimSpace(ua) == "" {
		return domain.DeviceDesktop
	}

	lower := strings.ToLower(ua)
	if isTablet(lower) {
		return domain.DeviceTablet
	}
	if useragent.New(ua).Mobile() || containsAny(lower, mobileMarkers) {
		return domain.DeviceMobile
	}
	return domain.DeviceDesktop
}

// Android tablets drop the "Mobile" token that Android phones send
func isTablet(lower string) bool {
	if containsAny(lower, tabletMarkers) {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
