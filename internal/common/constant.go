package common

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on outbound requests to the remote store.
const AccessTokenHeaderName = "X-Access-Token"

// TrashDeleteBatchSize caps how many item ids a single batch delete
// request may carry. Clear-trash chunks a vault's trashed items into
// batches of this size.
const TrashDeleteBatchSize = 50

// ContentFormatVersion is the schema version written for all newly
// encoded item content. Decoding additionally understands older versions
// (see the codec package).
const ContentFormatVersion = 2
