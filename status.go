package cacheclient

// CacheResponseStatus tells how a response was produced.
type CacheResponseStatus int

const (
	// The response came from the origin.
	CacheMiss CacheResponseStatus = iota
	// The response was served from the cache without contacting the origin.
	CacheHit
	// The response was generated by the cache itself.
	CacheModuleResponse
	// The stored response was served after the origin validated it.
	Validated
)

func (s CacheResponseStatus) String() string {
	switch s {
	case CacheMiss:
		return "CACHE_MISS"
	case CacheHit:
		return "CACHE_HIT"
	case CacheModuleResponse:
		return "CACHE_MODULE_RESPONSE"
	case Validated:
		return "VALIDATED"
	}
	return "UNKNOWN"
}
