package resources

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/netprobe/wirewatch/config"
)

//InitTestingResources creates a resource bundle backed by the in-memory
//store for use with unit tests.
func InitTestingResources(t *testing.T) *Resources {
	conf, err := config.LoadTestingConfig("")
	if err != nil {
		t.Fatal(err)
	}

	res, err := newResources(conf)
	if err != nil {
		t.Fatal(err)
	}
	res.Log.Out = ioutil.Discard
	return res
}

//InitIntegrationTestingResources creates a default testing
//resource bundle for use with integration testing.
//The MongoDB server is contacted via the URI provided
//as by go test -args [MongoDB URI].
func InitIntegrationTestingResources(t *testing.T) *Resources {
	if testing.Short() {
		t.Skip()
	}

	if len(os.Args) != 2 {
		t.Fatal("-args [MongoDB URI] is required to run integration tests with go test")
	}

	conf, err := config.LoadTestingConfig(os.Args[1])
	if err != nil {
		t.Fatal(err)
	}

	res, err := newResources(conf)
	if err != nil {
		t.Fatal(err)
	}
	return res
}
