package urlutil

import "net/url"

// StripFragment returns a copy of u without its fragment (anchor) component.
// Used when a URL is sent to a server, e.g. as a Referer header, since
// fragments are client-side only.
func StripFragment(u url.URL) url.URL {
	stripped := u
	stripped.Fragment = ""
	stripped.RawFragment = ""
	return stripped
}
