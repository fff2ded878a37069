package fixtures

import (
	"encoding/json"
)

func ReadFile(pathToFile string) ([]byte, error) {
	return FixturesFS.ReadFile(pathToFile)
}

func MustReadFile(pathToFile string) []byte {
	data, err := ReadFile(pathToFile)
	if err != nil {
		panic(err)
	}

	return data
}

// This is to read and format json data by unmarshalling and marshalling
func ReadJson(pathToFile string) ([]byte, error) {
	data, err := ReadFile(pathToFile)
	if err != nil {
		return nil, err
	}
	var inputUnmarshal interface{}
	err = json.Unmarshal(data, &inputUnmarshal)
	if err != nil {
		return nil, err
	}
	inputMarshal, err := json.Marshal(inputUnmarshal)
	if err != nil {
		return nil, err
	}

	return inputMarshal, nil
}

func MustReadJson(pathToFile string) []byte {
	data, err := ReadJson(pathToFile)
	if err != nil {
		panic(err)
	}

	return data
}
