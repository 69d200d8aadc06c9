package cache

import "testing"

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("dirpy", "/img/a.jpg", "resize=100x100")
	b := Fingerprint("dirpy", "/img/a.jpg", "resize=100x100")
	if a != b {
		t.Fatalf("expected stable fingerprint, got %q != %q", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected a 40-char hex sha1 digest, got %d chars", len(a))
	}
}

func TestFingerprint_DistinguishesRawQueryOrder(t *testing.T) {
	a := Fingerprint("dirpy", "/img/a.jpg", "640x480,quality:90")
	b := Fingerprint("dirpy", "/img/a.jpg", "quality:90,640x480")
	if a == b {
		t.Fatalf("expected different fingerprints for reordered raw query, got same %q", a)
	}
}

func TestFingerprint_DistinguishesPath(t *testing.T) {
	a := Fingerprint("dirpy", "/img/a.jpg", "resize=100x100")
	b := Fingerprint("dirpy", "/img/b.jpg", "resize=100x100")
	if a == b {
		t.Fatalf("expected different fingerprints for different paths")
	}
}

func TestFingerprint_DistinguishesPrefix(t *testing.T) {
	a := Fingerprint("p1", "/img/a.jpg", "resize=100x100")
	b := Fingerprint("p2", "/img/a.jpg", "resize=100x100")
	if a == b {
		t.Fatalf("expected different fingerprints for different prefixes")
	}
}
