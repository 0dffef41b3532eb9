package html2pdf

import (
	"net/url"
	"strings"
)

// ResourceClass is the kind of a subresource requested by a page.
// Values match the DevTools Network.ResourceType names.
type ResourceClass string

// Resource classes seen during rendering.
const (
	ResourceDocument   ResourceClass = "Document"
	ResourceStylesheet ResourceClass = "Stylesheet"
	ResourceImage      ResourceClass = "Image"
	ResourceMedia      ResourceClass = "Media"
	ResourceFont       ResourceClass = "Font"
	ResourceScript     ResourceClass = "Script"
	ResourceXHR        ResourceClass = "XHR"
	ResourceFetch      ResourceClass = "Fetch"
	ResourceWebSocket  ResourceClass = "WebSocket"
	ResourceOther      ResourceClass = "Other"
)

// Decision is the outcome of an admission check.
type Decision bool

// Admission outcomes.
const (
	Deny  Decision = false
	Allow Decision = true
)

// AdmissionPolicy decides whether a subresource may be fetched.
type AdmissionPolicy func(class ResourceClass, u *url.URL) Decision

// allowedClasses are fetched from any host.
var allowedClasses = map[ResourceClass]bool{
	ResourceDocument:   true,
	ResourceStylesheet: true,
	ResourceImage:      true,
	ResourceFont:       true,
	ResourceScript:     true,
}

// TrustedHosts are content-delivery hosts allowed for every resource class.
var TrustedHosts = []string{
	"fonts.googleapis.com",
	"fonts.gstatic.com",
	"cdn.jsdelivr.net",
	"cdnjs.cloudflare.com",
	"unpkg.com",
	"use.typekit.net",
}

// DefaultAdmission allows the document, scripts, stylesheets, fonts and
// images, plus anything served by a trusted host. Media, XHR, beacons and
// the rest are rejected so tracking and video fetches cannot stall a render.
func DefaultAdmission(class ResourceClass, u *url.URL) Decision {
	if allowedClasses[class] {
		return Allow
	}
	if u == nil {
		return Deny
	}
	if u.Scheme == "data" {
		return Allow
	}
	host := strings.ToLower(u.Hostname())
	for _, trusted := range TrustedHosts {
		if host == trusted || strings.HasSuffix(host, "."+trusted) {
			return Allow
		}
	}
	return Deny
}
