// Package upload validates image uploads and relays them to object storage.
//
// A file is checked against the image constraints, given a fresh object
// name, read fully into memory and written to the configured storage backend
// with a single request. The caller gets back the public URL under the pull
// zone.
//
//	relay := upload.NewRelay(store, "https://cdn.example.com")
//	res, err := relay.Upload(ctx, upload.File{
//	    Filename:    header.Filename,
//	    ContentType: header.Header.Get("Content-Type"),
//	    Size:        header.Size,
//	    Reader:      file,
//	})
//
// Errors returned by Relay.Upload are *Error values; Kind.StatusCode gives
// the HTTP status to answer with.
package upload
