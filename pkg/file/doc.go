// Package file measures how many bytes each tenant keeps in file storage.
//
// Uploads are laid out under a per-tenant prefix, tenants/<tenant-id>/, so a
// tenant's usage is the sum of object sizes below that prefix. Two meters are
// provided:
//   - S3Meter lists objects in an S3 or S3-compatible bucket (MinIO, R2).
//   - LocalMeter walks a directory tree on the local filesystem.
//
// Both expose TenantBytes with the signature of limits.CounterFunc, so a meter
// plugs straight into the quota registry:
//
//	meter, err := file.NewS3Meter(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	counters.Register(limits.ResourceStorageBytes, meter.TenantBytes)
//
// Listing is linear in the number of objects; callers that check quotas on
// every upload should cache the result per tenant.
package file
