// Package catalog loads the asset catalog and per-asset metadata descriptors.
//
// Both documents are JSON that may contain comments and trailing commas. They
// are standardised with hujson before decoding.
package catalog
