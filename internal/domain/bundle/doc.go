// Package bundle contains the core domain types of a native-library bundle.
//
// It defines Manifest (what a complete deployment must contain) and State
// (where a deployment attempt stands in its lifecycle).
package bundle
