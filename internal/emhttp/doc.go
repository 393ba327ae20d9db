// Package emhttp turns decoded state slices into typed records.
//
// The INI codec keeps every value as literal text. Whether "yes" means a
// boolean, whether a field is a comma list and which fields are numbers is
// decided per field here.
package emhttp
