package signer

// LeafPath builds the BIP32 derivation path this wallet uses for a given
// leaf id: a hardened index derived from the leaf id's low 32 bits under a
// fixed purpose branch, keeping every leaf key independent of the identity
// key and of each other.
func LeafPath(leafIndex uint32) DerivationPath {
	const purpose = 0x80000000 + 9735 // hardened, arbitrary purpose branch
	return DerivationPath{purpose, 0x80000000 + leafIndex}
}

// GetPublicKeyForNode returns the verifying public key a leaf's node
// transaction output commits to.
func (s *Signer) GetPublicKeyForNode(leafIndex uint32) ([]byte, error) {
	return s.DerivePublicKey(LeafPath(leafIndex))
}
