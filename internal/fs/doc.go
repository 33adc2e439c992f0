// Package fs abstracts the file system operations behind local blob writes so
// tests can inject I/O failures.
//
// Production code uses fs.Default ([LocalFS]). Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("block-000002", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
package fs
