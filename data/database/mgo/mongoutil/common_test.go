package mongoutil

import "testing"

func TestValidateAndSetDefaults(t *testing.T) {
	c := &Config{Address: []string{"a:27017", "b:27017"}, Database: "translate", Username: "u", Password: "p"}
	if err := c.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	want := "mongodb://u:p@a:27017,b:27017/translate?authSource=translate&maxPoolSize=100"
	if c.Uri != want {
		t.Fatalf("uri = %q, want %q", c.Uri, want)
	}
	if c.MaxRetry != defaultMaxRetry {
		t.Fatalf("MaxRetry = %d", c.MaxRetry)
	}

	if err := (&Config{Database: "x"}).ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected error without uri or address")
	}
	if err := (&Config{Uri: "mongodb://localhost"}).ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected error without database")
	}
}

func TestBuildURIEscapesCredentials(t *testing.T) {
	c := &Config{Address: []string{"db:27017"}, Database: "translate", Username: "svc", Password: "p@ss/word", AuthSource: "admin"}
	if err := c.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	want := "mongodb://svc:p%40ss%2Fword@db:27017/translate?authSource=admin&maxPoolSize=100"
	if c.Uri != want {
		t.Fatalf("uri = %q, want %q", c.Uri, want)
	}
}
