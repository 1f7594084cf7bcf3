// Package store provides the key-value storage used by the service to keep
// profile values.
//
// The package focuses on:
//   - A small interface (IStore) over the storage backend
//   - Typed, per HMD profile values on top of it (Profile)
//   - Sentinel errors plus a wrapping Error type for backend failures
//
// Key Components:
//
//   - IStore Interface: Set, Get, Has, Delete and prefix listing of raw keys.
//     Backend failures are returned as *Error wrapping the backend error, so
//     errors.Is works against the backend's sentinels.
//
//   - Profile: Stores strings, bools, int32s, float64s and float64 arrays under
//     "profile/<hmd>/<key>". Each value carries a type tag, reading it with the
//     wrong getter returns ErrTypeMismatch.
//
// Implementations:
//
//   - Badger Store (bstore): persistent or in-memory badger database.
//
// Usage Example:
//
//	s, err := bstore.NewBadgerStore("/var/lib/hmdlink")
//	if err != nil {
//	  return err
//	}
//	defer s.Close()
//
//	p := store.NewProfile(s)
//	p.SetNumber(0, "CenterPupilDepth", 0.064)
//	depth, err := p.GetNumber(0, "CenterPupilDepth")
package store
