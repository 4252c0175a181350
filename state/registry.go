package state

import "melodia/core/types"

const collectionPrefix = "registry/collection/"

func collectionKey(contract types.Address) string {
	return collectionPrefix + string(contract[:])
}

// CollectionGet loads the persisted token-table snapshot for the collection
// at contract, nil when none was written yet.
func (s *Store) CollectionGet(contract types.Address) ([]byte, error) {
	raw, ok, err := s.get(collectionKey(contract))
	if err != nil || !ok {
		return nil, err
	}
	return raw, nil
}

// CollectionPut stores the snapshot for the collection at contract.
func (s *Store) CollectionPut(contract types.Address, raw []byte) error {
	s.put(collectionKey(contract), raw)
	return nil
}
