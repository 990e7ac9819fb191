// Package servicenow provides a client for the ServiceNow Table API and a
// toolset that exposes table operations as agent tools.
//
// The client covers the four record operations Deskmate needs (list, get,
// create, update) against any table. The toolset expands a table/operation
// matrix into function tools named {prefix}_{table}_{operation}, e.g.
// servicenow_incident_list, each with a JSON schema generated from a typed
// input struct.
package servicenow
