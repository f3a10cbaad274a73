package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"booking_id", "customer_id", "amount", "currency", "method", "status", "payment_date", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "string"},
			"booking_id":   bson.M{"bsonType": "string", "minLength": 36, "maxLength": 36},
			"customer_id":  bson.M{"bsonType": "string"},
			"amount":       bson.M{"bsonType": "long", "minimum": 0},
			"currency":     bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
			"method":       bson.M{"bsonType": "string", "enum": []string{"Cash", "Online"}},
			"status":       bson.M{"bsonType": "string", "enum": []string{"Pending", "Paid"}},
			"payment_date": bson.M{"bsonType": "date"},
			"created_at":   bson.M{"bsonType": "date"},
		},
	},
}
