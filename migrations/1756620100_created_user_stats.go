package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_userstats0000",
			"name": "user_stats",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text_user_id",
					"name": "user_id",
					"type": "text",
					"required": true,
					"presentable": true,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "number_attended",
					"name": "parties_attended",
					"type": "number",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": null,
					"onlyInt": true
				},
				{
					"id": "number_hosted",
					"name": "parties_hosted",
					"type": "number",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": null,
					"onlyInt": true
				},
				{
					"id": "date_last_party",
					"name": "last_party_at",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "autodate_created",
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false
				},
				{
					"id": "autodate_updated",
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_user_stats_user ON user_stats (user_id)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_userstats0000")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
