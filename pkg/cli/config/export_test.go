package config

// SetPath allows tests to point the policy loader at a fixture file
func (x *Policy) SetPath(path string) {
	x.path = path
}
