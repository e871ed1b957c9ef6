package store

// Key prefixes. The key-value layer and the document store share one
// Badger instance; prefixes keep their keyspaces disjoint.
const (
	kvPrefix  = "kv:"  // kv:{name} → raw bytes
	docPrefix = "doc:" // doc:{documentID} → document JSON
)

// Fixed key-value layer key names. These match the storage keys used by
// the original browser client so an exported snapshot stays portable.
const (
	KeyCoins       = "numis-coins"
	KeyTags        = "numis-tags"
	KeyCredentials = "numis-couchdb-credentials"
	KeyLanguage    = "numis-language"
	KeyColumns     = "numis-columns"
)

// KeyRemoteRev holds the mirror revision observed by the last exchange.
// Engine bookkeeping only; it has no browser-client counterpart.
const KeyRemoteRev = "numis-remote-rev"
