package enums

// DevicePlatform is the OS family of a push token.
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
	DevicePlatformWeb     DevicePlatform = "web"
)

var validDevicePlatforms = []DevicePlatform{
	DevicePlatformIOS,
	DevicePlatformAndroid,
	DevicePlatformWeb,
}

func (v DevicePlatform) String() string {
	return string(v)
}

func (v DevicePlatform) IsValid() bool {
	return member(validDevicePlatforms, v)
}

func ParseDevicePlatform(value string) (DevicePlatform, error) {
	return parse(validDevicePlatforms, value, "device platform")
}
