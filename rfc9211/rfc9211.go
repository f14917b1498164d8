// Package rfc9211 formats the Cache-Status HTTP response header field.
package rfc9211

// HeaderName is the name of the response header field.
const HeaderName = "Cache-Status"

// CacheName identifies this cache in Cache-Status members.
const CacheName = "cacheclient"
