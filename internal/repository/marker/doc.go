// Package marker persists the bundle version marker.
//
// The marker is a small file in the library directory holding one decimal
// integer. Its presence means a deployment was committed; its value says
// which bundle version was extracted.
package marker
