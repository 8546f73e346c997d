package source

import "net/netip"

// Webpage is the payload shape produced by crawl-archive decoders: the
// responding server's address, the fetched URL, and the raw body.
// Decoders may hand out Contents aliased into their scan buffer for
// zero-copy processing inside a task. Owned makes the copy a value
// needs before it crosses a worker boundary; no sink or distributed
// stage calls it automatically.
type Webpage struct {
	IP       netip.Addr
	URL      string
	Contents []byte
}

// Owned returns a Webpage whose Contents no longer alias any decode
// buffer.
func (w Webpage) Owned() Webpage {
	contents := make([]byte, len(w.Contents))
	copy(contents, w.Contents)
	w.Contents = contents
	return w
}
