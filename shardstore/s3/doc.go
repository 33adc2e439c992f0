// Package s3 provides an Amazon S3 implementation of shardstore.BlobStore.
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "datasets/"
//	    o.Region = "us-east-1"
//	})
//
//	err = shardstore.Save(ctx, store, "run-42", data, codec.CompressionZSTD)
//
// Set Endpoint and UsePathStyle to talk to S3-compatible services.
package s3
