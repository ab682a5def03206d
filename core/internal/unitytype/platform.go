package unitytype

import "fmt"

// RuntimePlatform is the target platform recorded in a type schema.
type RuntimePlatform uint32

const (
	PlatformOSXEditor        RuntimePlatform = 0
	PlatformOSXPlayer        RuntimePlatform = 1
	PlatformWindowsPlayer    RuntimePlatform = 2
	PlatformOSXWebPlayer     RuntimePlatform = 3
	PlatformOSXDashboard     RuntimePlatform = 4
	PlatformWindowsWebPlayer RuntimePlatform = 5
	PlatformWindowsEditor    RuntimePlatform = 7
	PlatformIPhonePlayer     RuntimePlatform = 8
	PlatformPS3              RuntimePlatform = 9
	PlatformXbox360          RuntimePlatform = 10
	PlatformAndroid          RuntimePlatform = 11
	PlatformNaCl             RuntimePlatform = 12
	PlatformLinuxPlayer      RuntimePlatform = 13
	PlatformFlashPlayer      RuntimePlatform = 15
	PlatformLinuxEditor      RuntimePlatform = 16
	PlatformWebGL            RuntimePlatform = 17
	PlatformWSAPlayerX86     RuntimePlatform = 18
	PlatformWSAPlayerX64     RuntimePlatform = 19
	PlatformWSAPlayerARM     RuntimePlatform = 20
	PlatformPS4              RuntimePlatform = 25
	PlatformXboxOne          RuntimePlatform = 27
	PlatformTvOS             RuntimePlatform = 31
	PlatformSwitch           RuntimePlatform = 32
)

var platformNames = map[RuntimePlatform]string{
	PlatformOSXEditor:        "OSXEditor",
	PlatformOSXPlayer:        "OSXPlayer",
	PlatformWindowsPlayer:    "WindowsPlayer",
	PlatformOSXWebPlayer:     "OSXWebPlayer",
	PlatformOSXDashboard:     "OSXDashboardPlayer",
	PlatformWindowsWebPlayer: "WindowsWebPlayer",
	PlatformWindowsEditor:    "WindowsEditor",
	PlatformIPhonePlayer:     "IPhonePlayer",
	PlatformPS3:              "PS3",
	PlatformXbox360:          "XBOX360",
	PlatformAndroid:          "Android",
	PlatformNaCl:             "NaCl",
	PlatformLinuxPlayer:      "LinuxPlayer",
	PlatformFlashPlayer:      "FlashPlayer",
	PlatformLinuxEditor:      "LinuxEditor",
	PlatformWebGL:            "WebGLPlayer",
	PlatformWSAPlayerX86:     "WSAPlayerX86",
	PlatformWSAPlayerX64:     "WSAPlayerX64",
	PlatformWSAPlayerARM:     "WSAPlayerARM",
	PlatformPS4:              "PS4",
	PlatformXboxOne:          "XboxOne",
	PlatformTvOS:             "tvOS",
	PlatformSwitch:           "Switch",
}

func (p RuntimePlatform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return fmt.Sprintf("RuntimePlatform(%d)", uint32(p))
}
