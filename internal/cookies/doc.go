// Package cookies holds the cookie store used by the scraper client and the codec for
// Netscape/Mozilla cookie files (the tab-separated format written by curl, wget and
// browser export extensions).
//
// The store deliberately never filters cookies by expiry: cookies loaded from a file are
// treated as persistable and non-expired, the same way they were when they were saved.
package cookies
