// Package adaptive seals and opens small records with an AEAD cipher
// picked for the host CPU: AES-GCM where the architecture has AES
// instructions, ChaCha20-Poly1305 everywhere else. Both produce the
// same wire format (nonce prefix followed by the sealed payload), so
// data written on one architecture opens on another as long as the key
// matches.
//
// soketi uses it to encrypt app records at rest in the Badger store,
// with the key stretched from an operator passphrase:
//
//	cipher, err := adaptive.NewFromPassphrase(cfg.Apps.Passphrase)
//	sealed, err := cipher.Encrypt(record, []byte(appID))
//	record, err := cipher.Decrypt(sealed, []byte(appID))
//
// Ciphers are safe for concurrent use once constructed.
package adaptive
