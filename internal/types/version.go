package types

import "fmt"

// versionRollover is the component value at which a version increment
// carries into the next component.
const versionRollover = 10

// Version is a build's three part version number.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Increment advances the version by one patch, rolling patch overflow
// into minor and minor overflow into major.
func (v *Version) Increment() {
	v.Patch++
	if v.Patch >= versionRollover {
		v.Patch = 0
		v.Minor++
		if v.Minor >= versionRollover {
			v.Minor = 0
			v.Major++
		}
	}
}

// String renders the version as "v{major}.{minor}.{patch}".
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}
