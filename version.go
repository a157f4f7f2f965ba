package refreshkit

// Version is the current release of refreshkit.
//
// It is updated as part of the release process; intermediate commits carry
// the version of the most recent tag.
const Version = "0.3.1"

// defaultUserAgent is sent with every request unless overridden through
// default headers.
const defaultUserAgent = "refreshkit/" + Version
