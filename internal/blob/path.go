package blob

import "path/filepath"

// PathFor returns the sharded on-disk path for a digest's hex encoding:
// <root>/sha256/<d[0:2]>/<d[2:4]>/<hex(d)> (spec.md §3, §6).
func PathFor(root, digestHex string) string {
	return filepath.Join(root, "sha256", digestHex[0:2], digestHex[2:4], digestHex)
}

func incompletePathFor(finalPath string) string {
	return finalPath + ".incomplete"
}

func tmpDir(root string) string {
	return filepath.Join(root, ".tmp")
}
