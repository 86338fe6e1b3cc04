// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package profile

import "strings"

// isIOSLike is a broad check for iOS/iPadOS devices and Apple network stacks.
func isIOSLike(ua string) bool {
	return strings.Contains(ua, "iPhone") ||
		strings.Contains(ua, "iPad") ||
		strings.Contains(ua, "iPod") ||
		strings.Contains(ua, "AppleCoreMedia") ||
		strings.Contains(ua, "CFNetwork")
}

// DetectDeviceClass classifies a user-agent string.
func DetectDeviceClass(userAgent string) DeviceClass {
	switch {
	case isIOSLike(userAgent):
		return DeviceIOS
	case strings.Contains(strings.ToLower(userAgent), "android"):
		return DeviceAndroid
	default:
		return DeviceDesktop
	}
}
