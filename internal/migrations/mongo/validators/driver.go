package validators

import "go.mongodb.org/mongo-driver/bson"

var DriverValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "name", "status", "status_version", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":                bson.M{"bsonType": "string"},
			"user_id":            bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"name":               bson.M{"bsonType": "string", "minLength": 2, "maxLength": 100},
			"status":             bson.M{"bsonType": "string", "enum": []string{"Available", "OnDuty", "OffDuty"}},
			"current_booking_id": bson.M{"bsonType": "string"},
			"status_version":     bson.M{"bsonType": "long", "minimum": 0},
			"status_updated_at":  bson.M{"bsonType": "date"},
			"created_at":         bson.M{"bsonType": "date"},
		},
	},
}
