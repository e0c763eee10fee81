package blobstore

import "errors"

var (
	errEmptyDir        = errors.New("blobstore: directory is required")
	errEmptyPassphrase = errors.New("blobstore: passphrase is required")
)
