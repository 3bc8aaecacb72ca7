// Package domain models the per-ZIP region records assembled from third-party
// housing, school and park datasets.
//
// # Categories
//
// Each data source is a category that owns a fixed set of record fields:
//
//	prices   medianSalePrice, rentMedian, priceUpdatedAt
//	schools  schoolSignal (0–100), schoolUpdatedAt
//	parks    parksCountPerSqMi, parksUpdatedAt
//
// A category only ever writes its own fields, so refreshes for different
// categories can run in any order or concurrently without clobbering each
// other. [Patch.Validate] rejects a patch that names a field owned by another
// category.
//
// # Patches
//
// Normalizers emit [Patch] values: a ZIP, the category, and the set of fields
// present in the update. Presence is what matters, not the value:
//
//	{medianSalePrice: 410000}  sets the price, leaves everything else alone
//	{rentMedian: nil}          clears the rent, leaves the price alone
//	{}                         changes nothing except provenance tags
//
// Applying a patch is last-writer-wins per field, which makes merges
// idempotent: applying the same batch twice yields the same record.
//
// # Freshness stamps
//
// All *UpdatedAt fields are ISO year-month strings ("2006-01"). Sources that
// carry only a school year are stamped in August of that year, the start of
// the Texas school reporting cycle.
package domain
