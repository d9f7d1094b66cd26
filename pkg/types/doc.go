// Package types defines the row and value model, column classification,
// configuration, and standard errors shared by the export and bulk-JSON
// pipelines.
package types
