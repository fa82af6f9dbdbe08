// Package uploader implements the "upload" publish stage.
//
// The stage publishes the newest video artifact of an item (the burned copy
// when a post-process stage ran, otherwise the download) to one of three
// targets:
//
//	directory  copy into <storage>/published/<platform>/<account>/
//	http       multipart POST to [upload].http_endpoint with a bearer token
//	simulate   report five progress steps without moving any data
//
// The node's "target" option overrides [upload].default_target.
package uploader
