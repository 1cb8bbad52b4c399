// Package dataset reads a logical dataset stored across several files, one
// row at a time.
//
// A Chain orders the files and maps logical row indices onto (file, row)
// pairs. Friend chains attach extra columns for the same rows. A Cache
// decodes single rows of single columns on demand into buffers that grow
// but never shrink, and a Session ties both together with aliases and
// compiled formulas:
//
//	s, err := dataset.Open(ctx, backend, "DecayTree", paths)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	s.AddAlias("pt", "B_PT")
//	for _, err := range s.Entries(ctx, dataset.PrintEvery(10000)) {
//		if err != nil {
//			return err
//		}
//		ok, err := s.Select(ctx, "pt > 2000 && nTracks > 1")
//		...
//	}
//
// Values returned by Read and Get view the cache's buffers and are only valid
// until the same column is read at another row.
package dataset
