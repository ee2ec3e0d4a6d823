// Package arkiv holds the release metadata of the arkiv tools.
package arkiv

// Version is the arkiv release version.
const Version = "0.4.0"
